package recorder

import (
	"os"
	"path/filepath"
	"time"
)

// TimedFile 按时间滚动的追加写文件
// 文件名由时间推导，推导结果变化时关闭旧文件并打开新文件。
// 新文件为空时调用方负责补写文件头。
type TimedFile struct {
	nameFor func(t time.Time) string
	file    *os.File
	name    string
}

// NewTimedFile 构造滚动文件，nameFor 把时间映射为目标路径
func NewTimedFile(nameFor func(t time.Time) string) *TimedFile {
	return &TimedFile{nameFor: nameFor}
}

// Get 返回时刻 t 对应的文件
// 第二个返回值表示文件当前为空，需要写入文件头。
func (f *TimedFile) Get(t time.Time) (*os.File, bool, error) {
	name := f.nameFor(t)
	if f.file != nil && f.name == name {
		return f.file, false, nil
	}

	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, false, err
	}
	file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, false, err
	}

	f.file = file
	f.name = name
	return file, stat.Size() == 0, nil
}

// Close 关闭当前打开的文件
func (f *TimedFile) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.name = ""
	return err
}
