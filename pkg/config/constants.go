package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"

	EnvPubSubNotificationSub = "STOREFRONT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvCheckoutCurrency      = "STOREFRONT_CHECKOUT_CURRENCY"
	EnvDefaultCommissionRate = "STOREFRONT_DEFAULT_COMMISSION_RATE"
	EnvGatewayProvider       = "STOREFRONT_GATEWAY_PROVIDER"
	EnvNotifyAdminEmails     = "STOREFRONT_NOTIFY_ADMIN_EMAILS"
)
