package app

import (
	"fmt"
	"time"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/ai"
	"github.com/givance/webserver-sub009/pkg/logger"
	"github.com/givance/webserver-sub009/pkg/logger/console"
)

// InitLogger installs the console logger configured by DEBUG and LOG_FORMAT.
func InitLogger(prefix string) {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnvString("LOG_FORMAT", "text"),
		Prefix: prefix,
	})
	logger.Init(consoleLogger)
}

// LogAIMetrics logs the accumulated model usage and resets the counters.
func LogAIMetrics(client ai.Client) {
	metrics := client.GetMetrics()
	logger.Info(
		"[AI] Metrics",
		"requests", metrics.Requests,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
		"tokens_per_second", fmt.Sprintf("%.1f", metrics.TokenPerSecond),
	)
	client.ResetMetrics()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
