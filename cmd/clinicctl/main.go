package main

import "github.com/spec-kit/clinic-service/cmd/clinicctl/cmd"

func main() {
	cmd.Execute()
}
