package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"clinic-concierge/internal/phone"
)

// Config holds all configuration required by the concierge process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Telegram  TelegramConfig
	Zadarma   ZadarmaConfig
	Actuators ActuatorConfig
	CRM       CRMConfig
	Calls     CallsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	// JWTSecret signs ops tokens for the admin HTTP endpoints.
	JWTSecret   string
	JWTIssuer   string
	OpsTokenTTL time.Duration
}

type TelegramConfig struct {
	Token string

	// AdminChatIDs receive operator alerts and may use admin commands.
	AdminChatIDs []int64

	SupportPhone string
	DoctorPhone  string
	MapURL       string
	SchemeURL    string
}

type ZadarmaConfig struct {
	APIKey    string
	APISecret string

	// MainPhone is the CLI presented on outbound callback calls.
	MainPhone string

	// BaseURL overrides the API endpoint (tests, sandbox). Empty means production.
	BaseURL string
}

// ActuatorConfig maps the two physical actuators to their SIM numbers.
type ActuatorConfig struct {
	DoorNumber string
	GateNumber string
}

type CRMConfig struct {
	APIKey    string
	CompanyID string

	// BaseURL overrides the CRM endpoint (tests). Empty means production.
	BaseURL string

	SyncInterval time.Duration
}

type CallsConfig struct {
	// Retention is how long resolved and abandoned records are kept.
	Retention time.Duration

	// PendingTimeout is how long a pending record may wait for a webhook
	// before the janitor marks it timed out.
	PendingTimeout time.Duration

	JanitorInterval time.Duration

	// RateLimit actuator commands per user per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.OpsTokenTTL = mustDuration("OPS_TOKEN_TTL")

	c.Telegram.Token = strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN"))
	{
		ids, err := parseInt64List(os.Getenv("TELEGRAM_ADMIN_CHAT_IDS"))
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("TELEGRAM_ADMIN_CHAT_IDS: %w", err))
		}
		c.Telegram.AdminChatIDs = ids
	}
	c.Telegram.SupportPhone = strings.TrimSpace(os.Getenv("SUPPORT_PHONE"))
	c.Telegram.DoctorPhone = strings.TrimSpace(os.Getenv("DOCTOR_PHONE"))
	c.Telegram.MapURL = strings.TrimSpace(os.Getenv("MAP_URL"))
	c.Telegram.SchemeURL = strings.TrimSpace(os.Getenv("SCHEME_URL"))

	c.Zadarma.APIKey = strings.TrimSpace(os.Getenv("ZADARMA_API_KEY"))
	c.Zadarma.APISecret = os.Getenv("ZADARMA_API_SECRET")
	c.Zadarma.MainPhone = phone.Normalize(os.Getenv("ZADARMA_MAIN_PHONE"))
	c.Zadarma.BaseURL = strings.TrimSpace(os.Getenv("ZADARMA_BASE_URL"))

	c.Actuators.DoorNumber = phone.Normalize(os.Getenv("DOOR_NUMBER"))
	c.Actuators.GateNumber = phone.Normalize(os.Getenv("GATE_NUMBER"))

	c.CRM.APIKey = os.Getenv("WLAUNCH_API_KEY")
	c.CRM.CompanyID = strings.TrimSpace(os.Getenv("WLAUNCH_COMPANY_ID"))
	c.CRM.BaseURL = strings.TrimSpace(os.Getenv("WLAUNCH_BASE_URL"))
	c.CRM.SyncInterval = mustDuration("CRM_SYNC_INTERVAL")

	c.Calls.Retention = mustDuration("CALL_RETENTION")
	c.Calls.PendingTimeout = mustDuration("CALL_PENDING_TIMEOUT")
	c.Calls.JanitorInterval = mustDuration("CALL_JANITOR_INTERVAL")
	if v := strings.TrimSpace(os.Getenv("CALL_RATE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("CALL_RATE_LIMIT must be an integer, got %q", v))
		}
		c.Calls.RateLimit = n
	}
	c.Calls.RateWindow = mustDuration("CALL_RATE_WINDOW")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.OpsTokenTTL <= 0 {
		c.Auth.OpsTokenTTL = 12 * time.Hour
	}

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	if len(c.Telegram.AdminChatIDs) == 0 {
		errs = append(errs, errors.New("TELEGRAM_ADMIN_CHAT_IDS is required"))
	}

	if c.Zadarma.APIKey == "" {
		errs = append(errs, errors.New("ZADARMA_API_KEY is required"))
	}
	if c.Zadarma.APISecret == "" {
		errs = append(errs, errors.New("ZADARMA_API_SECRET is required"))
	}
	if c.Zadarma.MainPhone == "" {
		errs = append(errs, errors.New("ZADARMA_MAIN_PHONE is required"))
	}

	if c.Actuators.DoorNumber == "" {
		errs = append(errs, errors.New("DOOR_NUMBER is required"))
	}
	if c.Actuators.GateNumber == "" {
		errs = append(errs, errors.New("GATE_NUMBER is required"))
	}
	if c.Actuators.DoorNumber != "" && c.Actuators.DoorNumber == c.Actuators.GateNumber {
		errs = append(errs, errors.New("DOOR_NUMBER and GATE_NUMBER must differ"))
	}

	if c.CRM.APIKey == "" {
		errs = append(errs, errors.New("WLAUNCH_API_KEY is required"))
	}
	if c.CRM.CompanyID == "" {
		errs = append(errs, errors.New("WLAUNCH_COMPANY_ID is required"))
	}
	if c.CRM.SyncInterval <= 0 {
		c.CRM.SyncInterval = 15 * time.Minute
	}

	if c.Calls.Retention <= 0 {
		c.Calls.Retention = 24 * time.Hour
	}
	if c.Calls.PendingTimeout <= 0 {
		c.Calls.PendingTimeout = 15 * time.Minute
	}
	if c.Calls.JanitorInterval <= 0 {
		c.Calls.JanitorInterval = 5 * time.Minute
	}
	if c.Calls.RateLimit <= 0 {
		c.Calls.RateLimit = 3
	}
	if c.Calls.RateWindow <= 0 {
		c.Calls.RateWindow = time.Minute
	}
	if c.Calls.PendingTimeout >= c.Calls.Retention {
		errs = append(errs, errors.New("CALL_PENDING_TIMEOUT must be less than CALL_RETENTION"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func parseInt64List(v string) ([]int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("must be comma-separated integers, got %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
