package main

import "github.com/nephrawn/monitor-worker/worker"

func main() {
	worker.New().Run()
}
