package config

import (
	"github.com/spf13/viper"

	"github.com/sliceflow/pipeline/queue"
	"github.com/sliceflow/pipeline/taskstate"
)

func getDatabaseConfig(v *viper.Viper) *taskstate.Config {
	return &taskstate.Config{
		Driver:          v.GetString("database.driver"),
		Source:          v.GetString("database.source"),
		MaxIdleConn:     v.GetInt("database.max_idle_conn"),
		MaxOpenConn:     v.GetInt("database.max_open_conn"),
		ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
	}
}

func getRedisConfig(v *viper.Viper) *queue.RedisConfig {
	return &queue.RedisConfig{
		Addr:      v.GetString("redis.addr"),
		Username:  v.GetString("redis.username"),
		Password:  v.GetString("redis.password"),
		DB:        v.GetInt("redis.db"),
		ResultTTL: v.GetDuration("redis.result_ttl"),
	}
}

func getQueueConfig(v *viper.Viper) *queue.AMQPConfig {
	return &queue.AMQPConfig{
		URL:      v.GetString("queue.url"),
		Queue:    v.GetString("queue.queue"),
		Exchange: v.GetString("queue.exchange"),
		Prefetch: v.GetInt("queue.prefetch"),
	}
}
