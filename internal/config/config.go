package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Scraper Scraper
	Browser Browser
	Output  Output
	Logging Logging

	// KnownBrands is matched case-insensitively against product titles,
	// list order is priority.
	KnownBrands []string

	// ProductTypes maps a category name to its trigger keywords. Kept as a
	// slice because slice order is the matching priority.
	ProductTypes []ProductType
}

type Scraper struct {
	BaseURL        string
	MaxPages       int
	RequestDelay   time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

type Browser struct {
	Enabled        bool
	Headless       bool
	WaitTimeout    time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type Output struct {
	DataDir     string
	LogsDir     string
	DataFile    string
	LogFile     string
	DatabaseURL string
}

type Logging struct {
	Level string
}

type ProductType struct {
	Name     string
	Keywords []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: Scraper{
			BaseURL:        getEnvOrDefault("SCRAPER_BASE_URL", "https://silpo.ua/category/molochni-produkty-ta-iaitsia-234"),
			MaxPages:       getIntOrDefault("SCRAPER_MAX_PAGES", 10),
			RequestDelay:   getDurationOrDefault("SCRAPER_REQUEST_DELAY", 1500*time.Millisecond),
			RetryAttempts:  getIntOrDefault("SCRAPER_RETRY_ATTEMPTS", 3),
			RetryDelay:     getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			RequestTimeout: getDurationOrDefault("SCRAPER_REQUEST_TIMEOUT", 15*time.Second),
		},
		Browser: Browser{
			Enabled:        getBoolOrDefault("BROWSER_ENABLED", true),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			WaitTimeout:    getDurationOrDefault("BROWSER_WAIT_TIMEOUT", 10*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7,ru;q=0.6"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Kyiv"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "uk-UA"),
		},
		Output: Output{
			DataDir:     getEnvOrDefault("OUTPUT_DATA_DIR", "data"),
			LogsDir:     getEnvOrDefault("OUTPUT_LOGS_DIR", "logs"),
			DataFile:    getEnvOrDefault("OUTPUT_DATA_FILE", "silpo_raw.csv"),
			LogFile:     getEnvOrDefault("OUTPUT_LOG_FILE", "silpo_log.csv"),
			DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Logging: Logging{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		KnownBrands:  getStringSliceOrDefault("SCRAPER_KNOWN_BRANDS", defaultKnownBrands()),
		ProductTypes: defaultProductTypes(),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("SCRAPER_BASE_URL must not be empty")
	}

	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}

	if c.Scraper.RetryAttempts < 1 {
		return fmt.Errorf("SCRAPER_RETRY_ATTEMPTS must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func defaultKnownBrands() []string {
	return []string{
		// Ukrainian dairy brands
		"Яготинське",
		"Ферма",
		"Галичина",
		"Селянське",
		"ПростоНаше",
		"Премія",
		"Молокія",
		"Бурьонка",
		"На здоров'я",
		"Даніссімо",
		"Активіа",
		"Простоквашино",
		"Чудо",
		"Агуня",
		"Растішка",
		"Ростишка",

		// International brands
		"Lactel",
		"Actimel",
		"Danone",
		"Muller",
		"Alpro",
		"Valio",
		"Elle&Vire",
		"President",
		"Деліссімо",

		// Local premium brands
		"Біло",
		"Білоцерківське",
		"Тульчинка",
		"Марійка",
		"Злагода",
	}
}

func defaultProductTypes() []ProductType {
	return []ProductType{
		{Name: "молоко", Keywords: []string{"молоко"}},
		{Name: "вершки", Keywords: []string{"вершки"}},
		{Name: "сир", Keywords: []string{"сир "}},
		{Name: "сметана", Keywords: []string{"сметана"}},
		{Name: "йогурт", Keywords: []string{"йогурт"}},
		{Name: "кефір", Keywords: []string{"кефір"}},
		{Name: "ряжанка", Keywords: []string{"ряжанка"}},
		{Name: "масло", Keywords: []string{"масло"}},
		{Name: "маргарин", Keywords: []string{"маргарин"}},
		{Name: "яйця", Keywords: []string{"яйце", "яйця"}},
		{Name: "сирок", Keywords: []string{"сирок"}},
		{Name: "десерт", Keywords: []string{"десерт"}},
		{Name: "творог", Keywords: []string{"творог", "кисломолочний"}},
		{Name: "згущене", Keywords: []string{"згущене"}},
		{Name: "каша", Keywords: []string{"каша", "хлопья"}},
	}
}
