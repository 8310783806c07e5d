package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"retainer/internal/handlers"
)

func main() {
	lambda.Start(handlers.Health)
}
