package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Default prompt IDs for the gates that have prompts built. Overridable via
// QUOTEFLOW_PROMPT_ID_GATE<n> so staging can point at draft prompts.
const (
	defaultPromptGate1  = "pmpt_6977d1cf2b208195b83507388f431b30072ae8d30040d02c"
	defaultPromptGate2  = "pmpt_698f24734b2c8190b35dbd645766daba0a00ac37516c9940"
	defaultPromptGate2b = "pmpt_698f2e84a3a4819692fe9ba63dacfe53057c8a385232b3fd"
	defaultPromptGate3  = "pmpt_698f31a4830881958384594286c8c62f06c5a37e85bd4e6b"
)

type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string
	BearerToken string

	NatsURL   string
	NatsToken string

	OpenAIAPIKey  string
	PromptVersion string

	// Prompt IDs keyed by gate number. Gates without an entry are placeholders.
	GatePromptIDs map[int]string

	// Static prompt context, addressable by the variable resolver.
	ProductOptions   string
	DimensionContext string
}

func Load() Config {
	// Best-effort; real env vars win over .env entries.
	_ = godotenv.Load()

	return Config{
		Port:        envInt("QUOTEFLOW_PORT", 8460),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		BearerToken: envStr("QUOTEFLOW_BEARER_TOKEN", "changeme"),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		OpenAIAPIKey:  envStr("API_KEY", envStr("OPENAI_API_KEY", "")),
		PromptVersion: envStr("OPENAI_PROMPT_VERSION", "5"),

		GatePromptIDs: map[int]string{
			1:  envStr("QUOTEFLOW_PROMPT_ID_GATE1", defaultPromptGate1),
			2:  envStr("QUOTEFLOW_PROMPT_ID_GATE2", defaultPromptGate2),
			17: envStr("QUOTEFLOW_PROMPT_ID_GATE2B", defaultPromptGate2b),
			3:  envStr("QUOTEFLOW_PROMPT_ID_GATE3", defaultPromptGate3),
		},

		ProductOptions: envStr("QUOTEFLOW_PRODUCT_OPTIONS",
			"A) R-Blade\nB) R-Breeze\nC) K-Bana\nD) X-Blast\nE) Sky-Tilt\nF) Kitchens"),
		DimensionContext: envStr("QUOTEFLOW_DIMENSION_CONTEXT",
			`{"PRODUCT_ID":"r_blade",`+
				`"DIMENSION_RULES":{"r_blade":{`+
				`"rounding_method":"ceil",`+
				`"rounding_increment_ft":1,`+
				`"max_width_single_bay_ft":16,`+
				`"max_length_single_bay_ft":23`+
				`}}}`),
	}
}

// Lookup resolves a variable source key against static configuration.
// The variable resolver tries this before falling back to per-conversation
// session data; the bool reports whether the key is a configuration field.
func (c Config) Lookup(key string) (string, bool) {
	switch key {
	case "product_options":
		return c.ProductOptions, true
	case "dimension_context":
		return c.DimensionContext, true
	default:
		return "", false
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
