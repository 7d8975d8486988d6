package main

import "github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/cmd"

func main() {
	cmd.Execute()
}
