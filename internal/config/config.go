package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Instance is one connected WhatsApp number. Each instance serves exactly
// one venue unit.
type Instance struct {
	ID     string
	Unit   string
	APIURL string
	Token  string
}

type Config struct {
	Port   string
	AppEnv string

	DBDriver   string // postgres or sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	DBPath     string // sqlite only

	// Instances come from WHATSAPP_INSTANCES as
	// "id1:unit1:url1:token1,id2:unit2:url2:token2".
	Instances []Instance

	// InstanceBotDefault is the instance-level bot policy conversations
	// inherit unless overridden per conversation.
	InstanceBotDefault bool

	SchedulerInterval time.Duration

	// Enforced bounds for the admin-configured follow-up delays.
	FollowUp1MinHours int
	FollowUp1MaxHours int
	FollowUp2MinHours int
	FollowUp2MaxHours int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "production"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "castelo"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBPath:     getEnv("DB_PATH", "./castelo.db"),

		Instances:          parseInstances(getEnv("WHATSAPP_INSTANCES", "")),
		InstanceBotDefault: getEnvBool("BOT_DEFAULT_ENABLED", true),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),

		FollowUp1MinHours: getEnvInt("FOLLOWUP1_MIN_HOURS", 1),
		FollowUp1MaxHours: getEnvInt("FOLLOWUP1_MAX_HOURS", 72),
		FollowUp2MinHours: getEnvInt("FOLLOWUP2_MIN_HOURS", 24),
		FollowUp2MaxHours: getEnvInt("FOLLOWUP2_MAX_HOURS", 96),
	}
}

// InstanceByID returns the configured instance, or nil when unknown.
func (c *Config) InstanceByID(id string) *Instance {
	for i := range c.Instances {
		if c.Instances[i].ID == id {
			return &c.Instances[i]
		}
	}
	return nil
}

func parseInstances(raw string) []Instance {
	if raw == "" {
		return nil
	}
	var out []Instance
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		// id and unit come off the front, the token off the back, so the
		// API URL in the middle may itself contain colons.
		id, rest, okID := strings.Cut(entry, ":")
		unit, rest, okUnit := strings.Cut(rest, ":")
		sep := strings.LastIndex(rest, ":")
		if !okID || !okUnit || sep <= 0 || sep == len(rest)-1 {
			log.Printf("Warning: skipping malformed instance entry %q", entry)
			continue
		}
		out = append(out, Instance{
			ID:     id,
			Unit:   unit,
			APIURL: rest[:sep],
			Token:  rest[sep+1:],
		})
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
