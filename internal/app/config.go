package app

import (
	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/analysis"
)

// Config is everything the binaries read from the environment.
type Config struct {
	DatabaseURL    string
	MigrationsPath string

	AIAdapter     string
	ChatURL       string
	ChatKey       string
	ChatModel     string
	ClassifyModel string
	Thinking      string
	EmbedURL      string
	EmbedKey      string
	EmbedModel    string
	EmbedDim      int
	ParallelAIReq int
	AITimeoutMin  int

	Bucket string

	Analysis       analysis.Config
	TodoSimilarity float64
	MaxRetries     int
}

func LoadConfig() Config {
	return Config{
		DatabaseURL:    util.GetEnv("DATABASE_URL"),
		MigrationsPath: util.GetEnvString("MIGRATIONS_PATH", "migrations"),

		AIAdapter:     util.GetEnvString("AI_ADAPTER", "openai"),
		ChatURL:       util.GetEnv("AI_CHAT_URL"),
		ChatKey:       util.GetEnv("AI_CHAT_KEY"),
		ChatModel:     util.GetEnv("AI_CHAT_MODEL"),
		ClassifyModel: util.GetEnv("AI_CLASSIFY_MODEL"),
		Thinking:      util.GetEnv("AI_THINKING"),
		EmbedURL:      util.GetEnv("AI_EMBED_URL"),
		EmbedKey:      util.GetEnv("AI_EMBED_KEY"),
		EmbedModel:    util.GetEnv("AI_EMBED_MODEL"),
		EmbedDim:      util.GetEnvInt("AI_EMBED_DIM", 1536),
		ParallelAIReq: util.GetEnvInt("AI_PARALLEL_REQ", 8),
		AITimeoutMin:  util.GetEnvInt("AI_TIMEOUT_MIN", 5),

		Bucket: util.GetEnv("AWS_BUCKET"),

		Analysis: analysis.Config{
			ParallelDonors:     util.GetEnvInt("ANALYSIS_PARALLEL_DONORS", 5),
			CommunicationLimit: util.GetEnvInt("ANALYSIS_COMMUNICATION_LIMIT", 10),
			DonationLimit:      util.GetEnvInt("ANALYSIS_DONATION_LIMIT", 20),
		},
		// 0 keeps the store default
		TodoSimilarity: util.GetEnvNumeric("TODO_SIMILARITY_THRESHOLD", 0),
		MaxRetries:     util.GetEnvInt("ANALYSIS_MAX_RETRIES", 5),
	}
}
