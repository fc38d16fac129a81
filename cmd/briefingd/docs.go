package main

//go:generate swag init -d ../.. -g cmd/briefingd/main.go -o ../../docs

// @title           oddly.news Briefing API
// @version         0.1.0
// @description     Prediction-market audio briefings and agent provisioning.
// @host            localhost:3001
// @BasePath        /
// @schemes         http
