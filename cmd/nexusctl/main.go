// Command nexusctl runs maintenance tasks against the PSITS-NEXUS database.
package main

func main() {
	Execute()
}
