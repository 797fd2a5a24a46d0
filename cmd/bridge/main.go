package main

import (
	"github.com/joeydtaylor/steeze-bridge/pkg/serverfx"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	_ = godotenv.Load(".env")

	fx.New(serverfx.Module(serverfx.DefaultOptions())).Run()
}
