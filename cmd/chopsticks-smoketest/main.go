// Package main is a small preflight tool: it loads the S3 credentials YAML
// the coordinator renders for workload processes and performs a single
// HeadBucket call, so an operator can confirm connectivity and
// credentials before a test run starts instead of discovering a broken
// config mid-run.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/urfave/cli/v2"

	ourcli "github.com/sabaini/chopsticks/cli"
	"github.com/sabaini/chopsticks/config"
)

func main() {
	app := &cli.App{
		Name:           "chopsticks-smoketest",
		Usage:          "Validate the rendered S3 credentials file by head-checking its bucket",
		ExitErrHandler: ourcli.ExitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-path", Value: "/var/lib/chopsticks/config/s3.yaml", Usage: "path to the rendered S3 credentials YAML"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "HeadBucket call timeout"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	creds, err := config.LoadS3Credentials(c.String("config-path"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("smoketest: failed to load credentials: %v", err), 1)
	}
	if !creds.Valid() {
		return cli.Exit("smoketest: rendered credentials are incomplete (endpoint/access_key/secret_key required)", 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(orDefault(creds.Region, "us-east-1")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("smoketest: failed to load AWS config: %v", err), 1)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = &creds.Endpoint
		}
		o.UsePathStyle = true
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &creds.Bucket}); err != nil {
		return cli.Exit(fmt.Sprintf("smoketest: HeadBucket %s failed: %v", creds.Bucket, err), 1)
	}

	fmt.Printf("ok: bucket %q reachable at %s\n", creds.Bucket, creds.Endpoint)
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
