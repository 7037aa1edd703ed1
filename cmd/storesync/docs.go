package main

//go:generate swag init -g cmd/storesync/main.go -o docs

// @title           storesync API
// @version         0.1.0
// @description     Tenant store sync, webhook ingestion and sync audit.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
