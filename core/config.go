package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EngineSqlite   = "sqlite"
	EnginePostgres = "postgres"
)

type (
	ServerConfig struct {
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		DisableRequestLogs bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	AuthConfig struct {
		AllowAnonymous            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	HomeworkConfig struct {
		UpcomingDays  int
		HistoryMonths int
	}

	Config struct {
		AppName      string
		Env          string // DEV | TEST | QA | PROD
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		Location     *time.Location

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Homework HomeworkConfig
	}
)

func (conf DatabaseConfig) Address() string {
	if conf.Port == "" {
		return conf.Host
	}
	return conf.Host + ":" + conf.Port
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name: eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Agenda")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "b7&k2-wq!zx0p$e+4m=la9)u#3vn(h8c@d^r6ty1f5oj*gs")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("timezone", "UTC")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableRequestLogs", false)

	v.SetDefault("database.engine", EngineSqlite)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "agenda")
	v.SetDefault("database.user", "agenda")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "agenda.db")

	v.SetDefault("auth.allowAnonymous", true)
	v.SetDefault("auth.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("auth.jwtRefreshExpirationDelta", 30*24*time.Hour)

	v.SetDefault("homework.upcomingDays", 4)
	v.SetDefault("homework.historyMonths", 6)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		log.Fatalf("config.time.LoadLocation(%s): %v", v.GetString("timezone"), err)
	}

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Location:     loc,
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			DisableRequestLogs: v.GetBool("server.disableRequestLogs"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Auth: AuthConfig{
			AllowAnonymous:            v.GetBool("auth.allowAnonymous"),
			JWTExpirationDelta:        v.GetDuration("auth.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("auth.jwtRefreshExpirationDelta"),
		},
		Homework: HomeworkConfig{
			UpcomingDays:  v.GetInt("homework.upcomingDays"),
			HistoryMonths: v.GetInt("homework.historyMonths"),
		},
	}
	if err = conf.validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func (conf *Config) validate() error {
	switch conf.Database.Engine {
	case EngineSqlite, EnginePostgres:
	default:
		return fmt.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
	if conf.Homework.UpcomingDays < 0 || conf.Homework.HistoryMonths < 0 {
		return fmt.Errorf("homework windows must not be negative")
	}
	return nil
}
