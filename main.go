package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/Aashish23092/invoice-annotation/client"
	"github.com/Aashish23092/invoice-annotation/config"
	"github.com/Aashish23092/invoice-annotation/handler"
	"github.com/Aashish23092/invoice-annotation/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg)

	sessions := service.NewSessionRegistry()
	pdfProcessor := service.NewPDFProcessor()
	pages := service.NewPageLoader(pdfProcessor)

	detectionService := service.NewDetectionService(sessions, pages, buildDetectors(cfg, pdfProcessor)...)
	annotationHandler := handler.NewAnnotationHandler(detectionService, sessions, cfg.MaxFileSize)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxFileSize

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "Invoice Field Annotation",
			"detectors": detectionService.Detectors(),
		})
	})

	api := router.Group("/api/v1")
	annotationHandler.RegisterRoutes(api)

	logrus.WithFields(logrus.Fields{
		"port":     cfg.ServerPort,
		"detector": cfg.Detector,
	}).Info("Starting invoice annotation service")
	if err := router.Run(cfg.Address()); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// buildDetectors registers every detector the configuration allows and an
// "auto" chain that prefers the cheapest source: text layer, payment QR, then
// the vision model or OCR.
func buildDetectors(cfg *config.Config, pdfProcessor service.PDFProcessor) []service.DetectionOption {
	textLayer := service.NewLayoutDetector(service.NewTextLayerSource(pdfProcessor))
	qr := client.NewQRClient()
	tesseract := service.NewLayoutDetector(client.NewTesseractClient(cfg.TesseractDataPath))

	chain := []service.NamedDetector{
		{Name: "textlayer", Detector: textLayer},
		{Name: "qr", Detector: qr},
	}
	opts := []service.DetectionOption{
		service.WithDetector("textlayer", textLayer),
		service.WithDetector("qr", qr),
		service.WithDetector("tesseract", tesseract),
		service.WithDefaultDetector(cfg.Detector),
		service.WithTimeout(cfg.DetectionTimeout),
	}

	if cfg.VisionEnabled() {
		vision, err := client.NewVisionClient(client.VisionConfig{
			Provider:    cfg.VisionProvider,
			Model:       cfg.VisionModel,
			BaseURL:     cfg.VisionBaseURL,
			APIKey:      cfg.VisionAPIKey,
			MaxTokens:   cfg.VisionMaxTokens,
			Temperature: cfg.VisionTemperature,
		})
		if err != nil {
			logrus.WithError(err).Warn("Vision detector disabled")
		} else {
			opts = append(opts, service.WithDetector("vision", vision))
			chain = append(chain, service.NamedDetector{Name: "vision", Detector: vision})
		}
	}

	if cfg.AzureEnabled() {
		azure := service.NewLayoutDetector(client.NewAzureClient(cfg.AzureEndpoint, cfg.AzureAPIKey))
		opts = append(opts, service.WithDetector("azure", azure))
		chain = append(chain, service.NamedDetector{Name: "azure", Detector: azure})
	}

	chain = append(chain, service.NamedDetector{Name: "tesseract", Detector: tesseract})
	opts = append(opts, service.WithDetector("auto", service.NewChainDetector(chain...)))
	return opts
}
