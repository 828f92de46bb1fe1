package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "SUSSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SUSSHOP_DB_DSN"
	EnvDBHost = "SUSSHOP_DB_HOST"
	EnvDBUser = "SUSSHOP_DB_USER"
	EnvDBName = "SUSSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
