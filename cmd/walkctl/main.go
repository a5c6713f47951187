package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common/aws/config"
	"github.com/littlewalk/go-walk/common/aws/queue"
	"github.com/littlewalk/go-walk/common/backend"
	"github.com/littlewalk/go-walk/common/loggers"
	"github.com/littlewalk/go-walk/models"
	"github.com/littlewalk/go-walk/services"
)

type setupCmd struct{}

type nearbyCmd struct {
	Lng    float64 `arg:"--lng,required" help:"origin longitude"`
	Lat    float64 `arg:"--lat,required" help:"origin latitude"`
	Radius float64 `arg:"--radius,required" help:"radius in meters"`
	Limit  int64   `arg:"--limit" help:"maximum number of results"`
}

type showCmd struct {
	Id string `arg:"--id,required" help:"walk request id"`
}

type eventsCmd struct {
	Workers *int `arg:"--workers" help:"number of consumer workers"`
}

type walkRequestView struct {
	*models.WalkRequest
	Status models.WalkStatus `json:"status"`
}

func main() {
	var args struct {
		Setup  *setupCmd  `arg:"subcommand:setup" help:"create the schema or tables of the configured store"`
		Nearby *nearbyCmd `arg:"subcommand:nearby" help:"list unclaimed walk requests near a point"`
		Show   *showCmd   `arg:"subcommand:show" help:"print a walk request with its status"`
		Events *eventsCmd `arg:"subcommand:events" help:"print lifecycle events from the event queue"`
	}
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("walkctl: no .env file loaded: %v", err)
	}
	logger := loggers.NewLogger()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var awsCfg *aws.Config
	if args.Events != nil || backend.StoreFromEnv() == walk.WalkStore_DynamoDb {
		cfg, err := config.AwsConfig(ctx)
		if err != nil {
			logger.Fatalf("walkctl: error creating aws cfg: %v", err)
		}
		awsCfg = &cfg
	}

	if args.Events != nil {
		if err := tailEvents(ctx, logger, *awsCfg, args.Events.Workers); err != nil {
			logger.Fatalf("walkctl: events: %v", err)
		}
		return
	}

	b, err := backend.New(ctx, logger, awsCfg, nil, args.Setup != nil)
	if err != nil {
		logger.Fatalf("walkctl: failed to connect to %s store: %v", backend.StoreFromEnv(), err)
	}
	defer b.Close()

	listing := services.NewListingService(b.WalkRequests, nil, logger)
	switch {
	case args.Setup != nil:
		logger.Infof("walkctl: %s store is set up", b.Store)
	case args.Nearby != nil:
		var page *models.Pagination
		if args.Nearby.Limit > 0 {
			page = &models.Pagination{Limit: args.Nearby.Limit}
		}
		walkRequests, err := listing.NearbyWalkRequests(ctx, []float64{args.Nearby.Lng, args.Nearby.Lat, args.Nearby.Radius}, page)
		if err != nil {
			logger.Fatalf("walkctl: nearby: %v", err)
		}
		views := make([]walkRequestView, len(walkRequests))
		for idx, walkRequest := range walkRequests {
			views[idx] = walkRequestView{walkRequest, walkRequest.Status()}
		}
		printJSON(os.Stdout, views)
	case args.Show != nil:
		walkRequest, err := listing.GetWalkRequest(ctx, args.Show.Id)
		if err != nil {
			logger.Fatalf("walkctl: show: %v", err)
		}
		printJSON(os.Stdout, walkRequestView{walkRequest, walkRequest.Status()})
	}
}

// tailEvents consumes the event queue until interrupted. Consumed messages are deleted from the queue.
func tailEvents(ctx context.Context, logger models.Logger, awsCfg aws.Config, workers *int) error {
	eventQueue, err := queue.NewQueue(ctx, nil, logger, sqs.NewFromConfig(awsCfg), queue.Opts{QueueType: models.QueueType_Events})
	if err != nil {
		return err
	}
	consumer := queue.NewConsumer(eventQueue, printEvent(os.Stdout), workers)
	consumer.Start()
	<-ctx.Done()
	consumer.Shutdown()
	return nil
}

func printEvent(w io.Writer) func(ctx context.Context, msgBody string) error {
	return func(ctx context.Context, msgBody string) error {
		event := models.WalkEvent{}
		if err := json.Unmarshal([]byte(msgBody), &event); err != nil {
			return fmt.Errorf("error unmarshaling event %s: %w", msgBody, err)
		}
		subject := ""
		if event.SubjectId != nil {
			subject = " -> " + *event.SubjectId
		}
		_, err := fmt.Fprintf(w, "%s %-13s %s by %s%s\n", event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), event.Type, event.WalkRequestId, event.ActorId, subject)
		return err
	}
}

func printJSON(w io.Writer, value any) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(value)
}
