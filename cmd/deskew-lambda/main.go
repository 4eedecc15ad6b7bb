// Command deskew-lambda serves skew correction as an AWS Lambda function
// behind an API Gateway proxy integration. The request body is the base64
// text of an image; the response body is the base64 text of the corrected
// PNG.
//
// Only DESKEW_LOG_LEVEL and DESKEW_LOG_FORMAT are read from the environment.
package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ironsheep/image-deskew/internal/config"
	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/handler"
	"github.com/ironsheep/image-deskew/internal/logging"
)

func main() {
	cfg := config.DefaultConfig()
	cfg.LogFormat = "json"
	if err := config.ApplyEnvConfig(&cfg, nil); err != nil {
		fmt.Fprintf(os.Stderr, "deskew-lambda: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deskew-lambda: %v\n", err)
		os.Exit(1)
	}

	h := handler.New(
		deskew.New(deskew.WithLogger(logger)),
		handler.WithLogger(logger),
	)
	lambda.Start(h.HandleProxy)
}
