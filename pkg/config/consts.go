package config

const (
	EnvPrefix = "STREAMATLAS"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "STREAMATLAS_DB_DSN"
	EnvDBHost = "STREAMATLAS_DB_HOST"
	EnvDBUser = "STREAMATLAS_DB_USER"
	EnvDBName = "STREAMATLAS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
