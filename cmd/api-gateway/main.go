package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	_ "github.com/noah-isme/tutoring-scheduler-api/api/swagger"
	"github.com/noah-isme/tutoring-scheduler-api/internal/cli"
)

// @title Tutoring Scheduler API
// @version 1.0.0
// @description Session booking, recurrence and conflict resolution for tutoring marketplaces.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
