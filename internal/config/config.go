package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    StorageDriver string   // mysql (default) or memory
    UploadDir     string   // root directory for review images
    CORSOrigins   []string // allowed origins; empty means "*"
    RabbitURL     string   // AMQP url; empty disables events
    LogLevel      string   // zap level override
    LogDir        string   // directory of booking.log written by the consumer

    // Optional admin account created at start-up when missing.
    AdminName     string
    AdminEmail    string
    AdminPassword string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The DB_* variables
// are only required for the mysql driver.
func Load() Config {
    driver := strings.ToLower(envStr("STORAGE_DRIVER", DriverMySQL))
    if driver != DriverMySQL && driver != DriverMemory {
        log.Fatalf("invalid STORAGE_DRIVER: %q", driver)
    }
    dbVar := must
    if driver == DriverMemory {
        dbVar = os.Getenv
    }
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         dbVar("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         dbVar("DB_HOST"),
        DBPort:         dbVar("DB_PORT"),
        DBName:         dbVar("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),

        StorageDriver: driver,
        UploadDir:     envStr("UPLOAD_DIR", "uploads"),
        CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
        RabbitURL:     os.Getenv("RABBITMQ_URL"),
        LogLevel:      os.Getenv("LOG_LEVEL"),
        LogDir:        envStr("LOG_DIR", "logs"),

        AdminName:     envStr("ADMIN_NAME", "Administrator"),
        AdminEmail:    os.Getenv("ADMIN_EMAIL"),
        AdminPassword: os.Getenv("ADMIN_PASSWORD"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
