package recorder

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhirsama/Ion-Collector/src/inter"
	"gopkg.in/yaml.v3"
)

// recordsFileMagic Spectops 记录文件的首行标识
const recordsFileMagic = "# Spectops records"

// summaryColumns 行首的汇总列，取值从记录字段中抽取
var summaryColumns = []string{
	"a_electrometer_current_mean",
	"b_electrometer_current_mean",
	"a_electrometer_current_stddev",
	"b_electrometer_current_stddev",
	"a_electrometer_current_raw_mean",
	"b_electrometer_current_raw_mean",
	"a_electrometer_voltage",
	"b_electrometer_voltage",
}

// summaryColumnNames 汇总列在表头中的名称
var summaryColumnNames = []string{
	"cur_0", "cur_1",
	"curvar_0", "curvar_1",
	"rawcur_0", "rawcur_1",
	"volt_0", "volt_1",
}

// RecordsFile 把遥测记录写成按天滚动的 Spectops 记录文件
// 路径为 <dir>/<serial>/YYYYMMDD-block.records，制表符分隔，
// 新文件带 YAML 注释头与列名行。
type RecordsFile struct {
	mu    sync.Mutex
	dir   string
	files map[string]*TimedFile
}

// NewRecordsFile 构造记录文件出口，dir 为输出根目录
func NewRecordsFile(dir string) *RecordsFile {
	return &RecordsFile{
		dir:   dir,
		files: make(map[string]*TimedFile),
	}
}

// WriteRecord 追加一条记录，必要时滚动文件并写入文件头
func (r *RecordsFile) WriteRecord(serial string, rec *inter.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tf, ok := r.files[serial]
	if !ok {
		dir := filepath.Join(r.dir, serial)
		tf = NewTimedFile(func(t time.Time) string {
			return filepath.Join(dir, t.Format("20060102")+"-block.records")
		})
		r.files[serial] = tf
	}

	file, needHeader, err := tf.Get(rec.EndTime)
	if err != nil {
		return err
	}
	if needHeader {
		if err := writeRecordsHeader(file); err != nil {
			return err
		}
	}

	cols := make([]string, 0, 3+len(summaryColumns)+len(inter.RecordFields)+1)
	cols = append(cols,
		formatTimestamp(rec.BeginTime),
		formatTimestamp(rec.EndTime),
		rec.Opmode,
	)
	for _, name := range summaryColumns {
		cols = append(cols, formatField(rec.Fields[name]))
	}
	for _, name := range inter.RecordFields {
		cols = append(cols, formatField(rec.Fields[name]))
	}
	cols = append(cols, strings.Join(rec.Flags, ","))

	if _, err := file.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
		return err
	}
	return file.Sync()
}

// Close 关闭所有打开的记录文件
func (r *RecordsFile) Close() error {
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

// writeRecordsHeader 写入 Spectops 文件头：标识行、YAML 元信息、列名行
func writeRecordsHeader(file *os.File) error {
	params := make([]map[string]string, 0, len(inter.RecordFields))
	for _, f := range inter.RecordFields {
		params = append(params, map[string]string{"humanname": f, "name": f, "unit": ""})
	}

	doc := map[string]any{
		"dataproc variant":         "block",
		"electrometer groups":      map[string][]int{"a_el": {0, 0}, "b_el": {1, 1}},
		"electrometer names":       []string{"A", "B"},
		"file type":                "records",
		"instrument configuration": map[string]any{},
		"opmodes":                  []string{inter.ModeRun, inter.ModeZero, inter.ModeRunSwapped, "unknown"},
		"software":                 "ion_collector",
		"total electrometers":      2,
		"parameters":               params,
	}

	meta, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	if _, err := file.WriteString(recordsFileMagic + "\n"); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(string(meta), "\n"), "\n") {
		if _, err := file.WriteString("# " + line + "\n"); err != nil {
			return err
		}
	}

	header := append([]string{"begin_time", "end_time", "opmode"}, summaryColumnNames...)
	header = append(header, inter.RecordFields...)
	header = append(header, "flags")
	_, err = file.WriteString(strings.Join(header, "\t") + "\n")
	return err
}

// formatTimestamp 时间列的固定格式，保留时区偏移
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.999999-07:00")
}

// formatField 单元格取值的文本化，NaN 写作 nan
func formatField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) {
			return "nan"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
