package database

import (
	"algo_learn_backend/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSNUsesUTC(t *testing.T) {
	dsn := mysqlDSN(&config.DatabaseConfig{
		Host:      "127.0.0.1",
		Port:      3306,
		User:      "root",
		Password:  "secret",
		DBName:    "algo_learn",
		Charset:   "utf8mb4",
		ParseTime: true,
	})
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/algo_learn?charset=utf8mb4&parseTime=true&loc=UTC", dsn)
	assert.NotContains(t, dsn, "loc=Local")
}

func TestInitRedisUnreachable(t *testing.T) {
	start := time.Now()
	rdb, err := InitRedis(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeoutSeconds: 1})
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
	assert.Less(t, time.Since(start), 5*time.Second)
}
