package eventhub

// Config 为包总配置，应用通过 New 传入。
type Config struct {
	Engine EngineConfig
	Remote RemoteConfig
	Cron   CronConfig
	Logger LoggerConfig

	// Idempotency 可选配置：提供 KV 或 Redis 参数即默认启用发射去重。
	Idempotency IdempotencyConfig
}

// EngineConfig 执行引擎配置。
type EngineConfig struct {
	// Workers forceAsync 工作池大小（默认 16）。
	Workers int
}

// RemoteProvider 外部 broker 类型。
type RemoteProvider string

const (
	RemoteProviderRabbitMQ RemoteProvider = "rabbitmq"
	RemoteProviderRedis    RemoteProvider = "redis"
)

// RemoteConfig 外部 broker 转发配置；Provider 为空时 Remote 为 no-op。
type RemoteConfig struct {
	Provider RemoteProvider
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	// Group 消费组名（默认 "default"）。
	Group string
}

type RabbitMQConfig struct {
	URI                 string
	Exchange            string
	Prefetch            int
	ConsumerConcurrency int
}

type RedisConfig struct {
	Addr                string
	Username            string
	Password            string
	DB                  int
	ConsumerConcurrency int
}

type CronConfig struct {
	Timezone string
}

type LoggerConfig struct {
	Level string
}
