package util

const DateFormat = "2006-01-02"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
	MaxCoverSize    = 5 << 20
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
