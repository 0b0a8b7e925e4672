package recorder

import (
	"errors"
	"log/slog"

	"github.com/nhirsama/Ion-Collector/src/inter"
)

// SlogDiag 把诊断消息转发到结构化日志
type SlogDiag struct {
	logger *slog.Logger
}

// NewSlogDiag 构造日志诊断出口
func NewSlogDiag(logger *slog.Logger) *SlogDiag {
	return &SlogDiag{logger: logger}
}

func (d *SlogDiag) Message(serial, text string) {
	d.logger.Info(text, "serial", serial)
}

// TeeRecords 把一条记录同时写入多个出口
// 任一出口失败不阻止其余出口，错误合并后上抛。
type TeeRecords []inter.RecordSink

func (t TeeRecords) WriteRecord(serial string, rec *inter.Record) error {
	var errs []error
	for _, sink := range t {
		if err := sink.WriteRecord(serial, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
