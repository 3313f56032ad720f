package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	IncidentIOAPIKey  string `yaml:"incidentio_api_key"`
	IncidentIOBaseURL string `yaml:"incidentio_base_url"`

	WebhookSecret         string   `yaml:"incidentio_webhook_secret"`
	WebhookListenAddr     string   `yaml:"webhook_listen_addr"`
	WebhookPublicURL      string   `yaml:"webhook_public_url"`
	WebhookEvents         []string `yaml:"webhook_events"`
	DisableSignatureCheck bool     `yaml:"disable_signature_check"`
	DeregisterOnExit      bool     `yaml:"deregister_on_exit"`

	ProductiveAPIToken string `yaml:"productive_api_token"`
	ProductiveOrgID    string `yaml:"productive_org_id"`
	ProductiveBaseURL  string `yaml:"productive_base_url"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackAppToken   string `yaml:"slack_app_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	ScheduleIDs      []string `yaml:"schedule_ids"`
	CheckSchedule    string   `yaml:"check_schedule"`
	CheckWindowDays  int      `yaml:"check_window_days"`
	NotifyConflicted bool     `yaml:"notify_conflicted"`

	DBPath   string `yaml:"db_path"`
	Timezone string `yaml:"timezone"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.IncidentIOAPIKey, "INCIDENTIO_API_KEY")
	envOverride(&cfg.IncidentIOBaseURL, "INCIDENTIO_BASE_URL")
	envOverride(&cfg.WebhookSecret, "INCIDENTIO_WEBHOOK_SECRET")
	envOverride(&cfg.WebhookListenAddr, "WEBHOOK_LISTEN_ADDR")
	envOverride(&cfg.WebhookPublicURL, "WEBHOOK_PUBLIC_URL")
	envOverride(&cfg.ProductiveAPIToken, "PRODUCTIVE_API_TOKEN")
	envOverride(&cfg.ProductiveOrgID, "PRODUCTIVE_ORG_ID")
	envOverride(&cfg.ProductiveBaseURL, "PRODUCTIVE_BASE_URL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.CheckSchedule, "CHECK_SCHEDULE")
	envOverrideInt(&cfg.CheckWindowDays, "CHECK_WINDOW_DAYS")
	envOverrideBool(&cfg.NotifyConflicted, "NOTIFY_CONFLICTED")
	envOverrideBool(&cfg.DisableSignatureCheck, "DISABLE_SIGNATURE_CHECK")
	envOverrideBool(&cfg.DeregisterOnExit, "DEREGISTER_ON_EXIT")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideList(&cfg.ScheduleIDs, "SCHEDULE_IDS")
	envOverrideList(&cfg.WebhookEvents, "WEBHOOK_EVENTS")

	// Defaults
	if cfg.IncidentIOBaseURL == "" {
		cfg.IncidentIOBaseURL = "https://api.incident.io"
	}
	if cfg.ProductiveBaseURL == "" {
		cfg.ProductiveBaseURL = "https://api.productive.io/api/v2"
	}
	if cfg.WebhookListenAddr == "" {
		cfg.WebhookListenAddr = ":8090"
	}
	if len(cfg.WebhookEvents) == 0 {
		cfg.WebhookEvents = []string{"incident.created"}
	}
	if cfg.CheckWindowDays == 0 {
		cfg.CheckWindowDays = 14
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./oncallbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	required := map[string]string{
		"incidentio_api_key":   cfg.IncidentIOAPIKey,
		"productive_api_token": cfg.ProductiveAPIToken,
		"productive_org_id":    cfg.ProductiveOrgID,
		"slack_bot_token":      cfg.SlackBotToken,
		"slack_app_token":      cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.CheckSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.CheckSchedule); err != nil {
			log.Fatalf("invalid check_schedule '%s': %v", cfg.CheckSchedule, err)
		}
	}
	if cfg.CheckWindowDays < 1 {
		log.Fatalf("invalid check_window_days '%d': must be >= 1", cfg.CheckWindowDays)
	}
	if !cfg.DisableSignatureCheck && cfg.WebhookSecret == "" {
		log.Println("Warning: incidentio_webhook_secret not set, webhook signatures will not be verified")
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = nil
		for _, item := range strings.Split(val, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				*field = append(*field, item)
			}
		}
	}
}

// eventAccepted reports whether the configured event filter matches the
// received event type. A "*" entry matches everything.
func (c Config) eventAccepted(eventType string) bool {
	for _, ev := range c.WebhookEvents {
		if ev == "*" || ev == eventType {
			return true
		}
	}
	return false
}
