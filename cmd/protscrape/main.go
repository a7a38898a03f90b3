package main

import "medresai-scraper/cmd/protscrape/cmd"

func main() {
	cmd.Execute()
}
