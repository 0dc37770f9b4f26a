package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Text embedding configuration (OpenAI-compatible protocol).
	// The transcript/meta/bio descriptor sets share one text model.
	EmbeddingModel   string
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingDim     int

	// Video embedding configuration. The video descriptor set uses a
	// separate model with its own dimensionality.
	VideoEmbeddingModel   string
	VideoEmbeddingAPIKey  string
	VideoEmbeddingBaseURL string
	VideoEmbeddingDim     int

	Mode        string
	Addr        string
	Data        string
	Driver      string
	DSN         string
	Version     string
	InstanceURL string
	Port        int

	// Per-stage upstream deadline in seconds for store/index calls.
	StageTimeout int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingModel = getEnvOrDefault("TALKLENS_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.EmbeddingAPIKey = getEnvOrDefault("TALKLENS_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("TALKLENS_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingDim = getEnvOrDefaultInt("TALKLENS_EMBEDDING_DIM", 768)

	p.VideoEmbeddingModel = getEnvOrDefault("TALKLENS_VIDEO_EMBEDDING_MODEL", "marengo-retrieval-2.7")
	p.VideoEmbeddingAPIKey = getEnvOrDefault("TALKLENS_VIDEO_EMBEDDING_API_KEY", "")
	p.VideoEmbeddingBaseURL = getEnvOrDefault("TALKLENS_VIDEO_EMBEDDING_BASE_URL", "")
	p.VideoEmbeddingDim = getEnvOrDefaultInt("TALKLENS_VIDEO_EMBEDDING_DIM", 1024)

	p.StageTimeout = getEnvOrDefaultInt("TALKLENS_STAGE_TIMEOUT_SECONDS", 10)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies.
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" && p.Driver != "memory" {
		return errors.Errorf("unknown driver %q (supported: sqlite, postgres, memory)", p.Driver)
	}

	if p.StageTimeout <= 0 {
		p.StageTimeout = 10
	}

	// The memory driver holds the snapshot in process; no data dir needed.
	if p.Driver == "memory" {
		return nil
	}

	if p.Driver == "postgres" {
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
		return nil
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.DSN == "" {
		dbFile := fmt.Sprintf("talklens_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
