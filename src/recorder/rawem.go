package recorder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// rawHeader 原始采样 CSV 的列名行
const rawHeader = "timestamp,mcutime,channel,value\n"

// RawFile 把原始电计采样写成按天滚动的 CSV 文件
// 路径为 <dir>/<serial>/YYYYMMDD.rawem，时间列为 Unix 秒。
type RawFile struct {
	mu    sync.Mutex
	dir   string
	files map[string]*TimedFile
}

// NewRawFile 构造原始采样出口，dir 为输出根目录
func NewRawFile(dir string) *RawFile {
	return &RawFile{
		dir:   dir,
		files: make(map[string]*TimedFile),
	}
}

// WriteSample 追加一条采样，必要时滚动文件并写入列名行
func (r *RawFile) WriteSample(serial string, t time.Time, mcuTime float64, channel int, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tf, ok := r.files[serial]
	if !ok {
		dir := filepath.Join(r.dir, serial)
		tf = NewTimedFile(func(t time.Time) string {
			return filepath.Join(dir, t.Format("20060102")+".rawem")
		})
		r.files[serial] = tf
	}

	file, needHeader, err := tf.Get(t)
	if err != nil {
		return err
	}
	if needHeader {
		if _, err := file.WriteString(rawHeader); err != nil {
			return err
		}
	}

	ts := float64(t.UnixNano()) / float64(time.Second)
	row := fmt.Sprintf("%s,%s,%d,%s\n",
		strconv.FormatFloat(ts, 'f', 6, 64),
		strconv.FormatFloat(mcuTime, 'g', -1, 64),
		channel,
		strconv.FormatFloat(value, 'g', -1, 64),
	)
	_, err = file.WriteString(row)
	return err
}

// Close 关闭所有打开的采样文件
func (r *RawFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, tf := range r.files {
		if err := tf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
