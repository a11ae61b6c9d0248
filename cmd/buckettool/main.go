package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tidewave/threadflow/config"
	"github.com/tidewave/threadflow/internal/clients"
	"github.com/tidewave/threadflow/internal/clients/kafka_client"
	"github.com/tidewave/threadflow/internal/logging"
	"github.com/tidewave/threadflow/internal/models"
)

const presignExpiry = 15 * time.Minute

// Operational helper for the dump bucket: inspect what scrapers dropped off,
// upload a dump by hand, hand out a temporary download link, or enqueue a
// key for the consumer fleet.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.FromEnv()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx := context.Background()

	s3Client, err := clients.NewS3Client(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		slog.Error("[BucketTool] Failed to build S3 client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cmdErr error
	switch os.Args[1] {
	case "list":
		prefix := ""
		if len(os.Args) > 2 {
			prefix = os.Args[2]
		}
		cmdErr = listObjects(ctx, s3Client, cfg.BlobBucket, prefix)
	case "upload":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(2)
		}
		cmdErr = uploadObject(ctx, s3Client, cfg.BlobBucket, os.Args[2], os.Args[3])
	case "presign":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(2)
		}
		cmdErr = presignObject(ctx, s3Client, cfg.BlobBucket, os.Args[2])
	case "enqueue":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(2)
		}
		cmdErr = enqueueWorkItem(cfg, os.Args[2])
	default:
		printUsage()
		os.Exit(2)
	}

	if cmdErr != nil {
		slog.Error("[BucketTool] Command failed", slog.String("error", cmdErr.Error()))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: buckettool <command> [args]

commands:
  list [prefix]         list objects in the dump bucket
  upload <file> <key>   upload a local file under key
  presign <key>         print a temporary download URL for key
  enqueue <key>         publish key as a work item for the consumer fleet`)
}

func listObjects(ctx context.Context, client *s3.Client, bucket, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			fmt.Printf("%s\t%d\t%s\n",
				aws.ToString(obj.Key),
				aws.ToInt64(obj.Size),
				aws.ToTime(obj.LastModified).Format(time.RFC3339))
			total++
		}
	}

	slog.Info("[BucketTool] Listing complete", slog.Int("objects", total))
	return nil
}

func uploadObject(ctx context.Context, client *s3.Client, bucket, file, key string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	blob := clients.NewBlobClient(client, bucket)
	if err := blob.Put(ctx, key, data); err != nil {
		return err
	}

	slog.Info("[BucketTool] Upload complete",
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return nil
}

func presignObject(ctx context.Context, client *s3.Client, bucket, key string) error {
	presigner := s3.NewPresignClient(client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return fmt.Errorf("failed to presign %s: %w", key, err)
	}

	fmt.Println(req.URL)
	return nil
}

func enqueueWorkItem(cfg config.Config, key string) error {
	publisher, err := kafka_client.NewPublisher(kafka_client.KafkaConfig{Broker: cfg.KafkaBroker})
	if err != nil {
		return err
	}
	defer publisher.Close()

	return publisher.PublishWorkItem(cfg.KafkaTopic, models.WorkItem{Key: key})
}
