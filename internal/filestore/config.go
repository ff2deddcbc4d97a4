package filestore

// Config locates the bucket that holds schema documents.
type Config struct {
	// Endpoint is the host:port of the storage server, e.g. "localhost:9000".
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is only needed by region-aware S3 deployments.
	Region string

	// Bucket is checked on connect and used by LoadStore and PublishStore
	// callers that do not name one.
	Bucket string

	// Prefix scopes schema documents inside Bucket, e.g. "models/".
	Prefix string
}

// DefaultConfig returns a local MinIO setup reading from the "schemas"
// bucket.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "schemas",
	}
}

