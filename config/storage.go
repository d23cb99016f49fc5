package config

import (
	"github.com/spf13/viper"

	"github.com/sliceflow/pipeline/storage"
)

func getStorageConfig(v *viper.Viper) *storage.Config {
	return &storage.Config{
		Endpoint:   v.GetString("storage.endpoint"),
		AccessKey:  v.GetString("storage.access_key"),
		SecretKey:  v.GetString("storage.secret_key"),
		Bucket:     v.GetString("storage.bucket"),
		UseSSL:     v.GetBool("storage.use_ssl"),
		PublicHost: v.GetString("storage.public_host"),
	}
}
