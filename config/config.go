package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	AppEnv  string `mapstructure:"APP_ENV"`
	GinMode string `mapstructure:"GIN_MODE"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`

	RazorpayKeyID         string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `mapstructure:"RAZORPAY_WEBHOOK_SECRET"`
	Currency              string `mapstructure:"CURRENCY"`

	GCSBucket          string `mapstructure:"GCS_BUCKET"`
	GCSCredentialsFile string `mapstructure:"GCS_CREDENTIALS_FILE"`

	CertFontPath      string `mapstructure:"CERT_FONT_PATH"`
	CertURLTTLSeconds int    `mapstructure:"CERT_URL_TTL_SECONDS"`
	CertVerifyBaseURL string `mapstructure:"CERT_VERIFY_BASE_URL"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	// ВАЖНО: Явно биндим
	viper.BindEnv("PORT")
	viper.BindEnv("APP_ENV")
	viper.BindEnv("GIN_MODE")
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("JWT_ACCESS_SECRET")
	viper.BindEnv("RAZORPAY_KEY_ID")
	viper.BindEnv("RAZORPAY_KEY_SECRET")
	viper.BindEnv("RAZORPAY_WEBHOOK_SECRET")
	viper.BindEnv("CURRENCY")
	viper.BindEnv("GCS_BUCKET")
	viper.BindEnv("GCS_CREDENTIALS_FILE")
	viper.BindEnv("CERT_FONT_PATH")
	viper.BindEnv("CERT_URL_TTL_SECONDS")
	viper.BindEnv("CERT_VERIFY_BASE_URL")
	viper.BindEnv("ALLOWED_ORIGINS")

	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("CURRENCY", "USD")
	viper.SetDefault("CERT_URL_TTL_SECONDS", 3600)

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
