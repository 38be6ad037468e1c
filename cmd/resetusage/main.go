package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/karobarhq/karobar/internal/pkg/cache"
	"github.com/karobarhq/karobar/internal/pkg/database"
	"github.com/karobarhq/karobar/internal/pkg/env"
	"github.com/karobarhq/karobar/internal/pkg/metrics/counter"
	"github.com/karobarhq/karobar/internal/pkg/quota"
)

// resetusage runs the usage maintenance jobs: flushing the batched redis
// api-call counters into the usages table every minute, and zeroing
// api_calls_used for every tenant at the start of each month.
//
//	go run cmd/resetusage/main.go        # run as a daemon
//	go run cmd/resetusage/main.go once   # reset api_calls_used now and exit
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	quotaSvc := quota.NewService(quota.NewRepository(database.GetDB()))

	if len(os.Args) > 1 && os.Args[1] == "once" {
		if err := counter.FlushAll(); err != nil {
			log.Printf("counter flush failed: %v", err)
		}
		if err := quotaSvc.ResetAllAPICalls(); err != nil {
			log.Fatalf("api call reset failed: %v", err)
		}
		log.Println("api call usage reset for all organizations")
		return
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := c.AddFunc("@every 1m", func() {
		if err := counter.FlushAll(); err != nil {
			log.Printf("counter flush failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule counter flush: %v", err)
	}

	if _, err := c.AddFunc("0 0 1 * *", func() {
		if err := quotaSvc.ResetAllAPICalls(); err != nil {
			log.Printf("api call reset failed: %v", err)
			return
		}
		log.Println("api call usage reset for all organizations")
	}); err != nil {
		log.Fatalf("failed to schedule api call reset: %v", err)
	}

	c.Start()
	log.Println("usage maintenance scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()
	log.Println("usage maintenance scheduler stopped")
}
