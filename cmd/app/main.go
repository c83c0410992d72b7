package main

import (
	"text-extractor/internal/bootstrap"
	"text-extractor/internal/logging"
)

func main() {
	log := logging.New(logging.Options{})

	app, err := bootstrap.New()
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		log.Fatal().Err(err).Msg("run app")
	}
}
