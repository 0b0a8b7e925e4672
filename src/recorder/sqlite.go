package recorder

import (
	"database/sql"
	"encoding/json"
	"math"

	"github.com/nhirsama/Ion-Collector/src/inter"
	_ "modernc.org/sqlite"
)

// SQLiteStore 把遥测记录持久化到 SQLite，便于结构化查询
// 字段整体序列化为 JSON 存入 payload 列，NaN 以 null 表示。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开数据库并初始化表结构
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// 初始化原子化表结构
	schema := `
    CREATE TABLE IF NOT EXISTS records (
       id INTEGER PRIMARY KEY AUTOINCREMENT,
       serial TEXT NOT NULL,
       begin_ms BIGINT NOT NULL,
       end_ms BIGINT NOT NULL,
       opmode TEXT NOT NULL,
       is_settling INTEGER NOT NULL,
       payload TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_records_query ON records (serial, begin_ms);
    `
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// WriteRecord 插入一条记录
func (s *SQLiteStore) WriteRecord(serial string, rec *inter.Record) error {
	payload, err := json.Marshal(sanitizeFields(rec.Fields))
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO records (serial, begin_ms, end_ms, opmode, is_settling, payload)
         VALUES (?, ?, ?, ?, ?, ?)`,
		serial,
		rec.BeginTime.UnixMilli(),
		rec.EndTime.UnixMilli(),
		rec.Opmode,
		rec.IsSettling,
		string(payload),
	)
	return err
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sanitizeFields JSON 不接受 NaN，统一替换为 null
func sanitizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}
