package main

import (
	"git.handmade.network/hmn/forumaccess/src/forumcmd"
)

func main() {
	forumcmd.ForumCommand.Execute()
}
