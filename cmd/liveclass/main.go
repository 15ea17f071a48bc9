// Command liveclass is the terminal front-end for live classes: the session
// directory, the class chat and the community moderation panel.
package main

func main() {
	Execute()
}
