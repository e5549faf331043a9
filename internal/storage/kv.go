package storage

import (
	"database/sql"
	"errors"
	"time"
)

// suffixKeyPrefix namespaces persisted suffix caches in the kv table.
const suffixKeyPrefix = "suffix:"

// KVSet 设置键值，ttl 为 0 表示永不过期
func (db *DB) KVSet(key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := db.Exec(
		"INSERT OR REPLACE INTO kv_store (key, value, expires_at) VALUES (?, ?, ?)",
		key, value, expiresAt,
	)
	return err
}

// KVGet 获取键值，过期的键视为不存在
func (db *DB) KVGet(key string) (string, error) {
	var (
		value     string
		expiresAt sql.NullTime
	)
	err := db.QueryRow("SELECT value, expires_at FROM kv_store WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		_, _ = db.Exec("DELETE FROM kv_store WHERE key = ?", key)
		return "", ErrNotFound
	}
	return value, nil
}

// KVDelete 删除键值
func (db *DB) KVDelete(key string) error {
	res, err := db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// KVCleanExpired 清理过期的键值对
func (db *DB) KVCleanExpired() (int64, error) {
	res, err := db.Exec("DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at < ?", time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveSuffix persists the stabilized suffix of a CLI render session.
func (db *DB) SaveSuffix(sessionKey, suffix string, ttl time.Duration) error {
	return db.KVSet(suffixKeyPrefix+sessionKey, suffix, ttl)
}

// LoadSuffix returns the suffix saved for sessionKey, or ErrNotFound.
func (db *DB) LoadSuffix(sessionKey string) (string, error) {
	return db.KVGet(suffixKeyPrefix + sessionKey)
}
