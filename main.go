package main

import (
	"embed"

	"text-extractor/internal/bootstrap"
	"text-extractor/internal/logging"
)

//go:embed frontend/index.html
var appAssets embed.FS

func main() {
	log := logging.New(logging.Options{})

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		log.Fatal().Err(err).Msg("run app")
	}
}
