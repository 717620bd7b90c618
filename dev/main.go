package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	devenv "jagriti-backend/dev/env"
)

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	dir, err := devenv.StateDir()
	if err != nil {
		return err
	}
	if recreate {
		err = os.RemoveAll(dir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}

	for _, file := range templates {
		err = writeTemplate(dir, file)
		if err != nil {
			return err
		}
	}
	PrintConfigLocations(dir)

	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(*recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!")
}
