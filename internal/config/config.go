package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	CamerasPort int
	CameraNames map[string]string // source IP -> camera name

	ModelPath           string
	InferenceBackend    string // "opencv" or "onnxruntime"
	OnnxLibraryPath     string
	ModelInputName      string
	ModelOutputName     string
	ModelOutputShape    []int
	ModelInputSize      int
	ModelNumClasses     int
	ChannelOrder        string
	Preprocessor        string // "native" or "opencv"
	ConfidenceThreshold float64
	IOUThreshold        float64
	AllowedClasses      []int
	ProcessingInterval  int // Process every Nth frame

	OCREngine           string // "tesseract" or "rekognition"
	OCRLanguage         string
	TessdataPrefix      string
	OCRMinConfidence    float64
	OCRWorkers          int
	PlateRegionFraction float64
	AWSRegion           string

	Recorder     string // "local" or "remote"
	RecorderURL  string
	DBDriver     string // "sqlite" or "postgres"
	DatabasePath string
	DatabaseURL  string
	AutoRecord   bool

	ImageDirectory           string
	ImageBufferLimit         int
	ImageBufferFlushInterval int
	LogDirectory             string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		CamerasPort: getEnvAsInt("CAMERAS_PORT", 5005),
		CameraNames: getEnvAsMap("CAMERA_NAMES"),

		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "yolo.onnx")),
		InferenceBackend:    getEnv("INFERENCE_BACKEND", "opencv"),
		OnnxLibraryPath:     getEnv("ONNX_LIBRARY_PATH", ""),
		ModelInputName:      getEnv("MODEL_INPUT_NAME", "images"),
		ModelOutputName:     getEnv("MODEL_OUTPUT_NAME", "output0"),
		ModelOutputShape:    getEnvAsIntList("MODEL_OUTPUT_SHAPE", []int{1, 84, 8400}),
		ModelInputSize:      getEnvAsInt("MODEL_INPUT_SIZE", 640),
		ModelNumClasses:     getEnvAsInt("MODEL_NUM_CLASSES", 80),
		ChannelOrder:        getEnv("CHANNEL_ORDER", "RGB"),
		Preprocessor:        getEnv("PREPROCESSOR", "native"),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		IOUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.45),
		AllowedClasses:      getEnvAsIntList("ALLOWED_CLASSES", []int{2, 3, 5, 7}), // car, motorcycle, bus, truck
		ProcessingInterval:  getEnvAsInt("PROCESSING_INTERVAL", 5),

		OCREngine:           getEnv("OCR_ENGINE", "tesseract"),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "eng"),
		TessdataPrefix:      getEnv("TESSDATA_PREFIX", ""),
		OCRMinConfidence:    getEnvAsFloat("OCR_MIN_CONFIDENCE", 0.3),
		OCRWorkers:          getEnvAsInt("OCR_WORKERS", 4),
		PlateRegionFraction: getEnvAsFloat("PLATE_REGION_FRACTION", 0.5),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),

		Recorder:     getEnv("RECORDER", "local"),
		RecorderURL:  getEnv("RECORDER_URL", "http://localhost:8000"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DatabasePath: getEnv("DB_PATH", filepath.Join(".", "data", "carbonlane.db")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AutoRecord:   getEnvAsBool("AUTO_RECORD", true),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 10),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsIntList parses "1,2,3". Any invalid element falls back to the default.
func getEnvAsIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		result = append(result, n)
	}
	return result
}

// getEnvAsMap parses "k=v,k=v" pairs, skipping malformed ones.
func getEnvAsMap(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	return result
}
