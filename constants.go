package walk

const (
	Env_AwsEndpoint   = "AWS_ENDPOINT"
	Env_AwsRegion     = "AWS_REGION"
	Env_DbAwsEndpoint = "DB_AWS_ENDPOINT"
	Env_Env           = "ENV"
	Env_JwtSecret     = "JWT_SECRET"
	Env_LogFormat     = "LOG_FORMAT"
	Env_LogLevel      = "LOG_LEVEL"
	Env_ServerAddress = "SERVER_ADDRESS"
	Env_WalkStore     = "WALK_STORE"
)

const (
	WalkStore_Memory   = "memory"
	WalkStore_Postgres = "postgres"
	WalkStore_DynamoDb = "dynamodb"
)

const DefaultServerAddress = ":8080"
const DefaultEnv = "dev"
