package main

import (
	"context"
	"errors"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("TASKFLOW_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.StorageConnectionString == "" {
		log.Fatal("missing TASKFLOW_STORAGE_CONNECTION_STRING")
	}
	log.Info("storage init starting")

	ctx := context.Background()
	if err := createTable(ctx, cfg.StorageConnectionString, cfg.TasksTable); err != nil {
		log.Fatalf("create table %s: %v", cfg.TasksTable, err)
	}
	if cfg.EventsQueue != "" {
		if err := createQueue(ctx, cfg.StorageConnectionString, cfg.EventsQueue); err != nil {
			log.Fatalf("create queue %s: %v", cfg.EventsQueue, err)
		}
	}

	log.Info("storage init complete")
}

func createTable(ctx context.Context, connStr, name string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
		if !hasErrorCode(err, string(aztables.TableAlreadyExists)) {
			return err
		}
		log.WithField("table", name).Debug("table already exists")
		return nil
	}
	log.WithField("table", name).Info("table created")
	return nil
}

func createQueue(ctx context.Context, connStr, name string) error {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return err
	}
	if _, err := q.Create(ctx, nil); err != nil {
		if !hasErrorCode(err, "QueueAlreadyExists") {
			return err
		}
		log.WithField("queue", name).Debug("queue already exists")
		return nil
	}
	log.WithField("queue", name).Info("queue created")
	return nil
}

func hasErrorCode(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
