// Command dynamosess administers a DynamoDB session table.
package main

func main() {
	Execute()
}
