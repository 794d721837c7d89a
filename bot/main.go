// Command bot is a chatterbox client. It sits in a channel, answers a few
// ! commands, and tells a joke when messaged directly.
//
// It authenticates with the server's shared bot secret when one is given,
// which exempts it from idle reaping and makes kicks bounce.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"
)

// Args are command line arguments.
type Args struct {
	Host      string
	Port      int
	Nick      string
	Channel   string
	Secret    string
	JokesFile string
}

func getArgs() (Args, error) {
	host := flag.String("host", "::1", "Server host.")
	port := flag.Int("port", 6667, "Server port.")
	nick := flag.String("nick", "jokebot", "Nickname to use.")
	channel := flag.String("channel", "", "Channel to sit in.")
	secret := flag.String("secret", "", "Bot shared secret. Optional.")
	jokes := flag.String("jokes", "jokes.txt", "File with one joke per line.")

	flag.Parse()

	if len(*channel) == 0 {
		flag.PrintDefaults()
		return Args{}, fmt.Errorf("you must provide a channel")
	}

	return Args{
		Host:      *host,
		Port:      *port,
		Nick:      *nick,
		Channel:   *channel,
		Secret:    *secret,
		JokesFile: *jokes,
	}, nil
}

func main() {
	log.SetFlags(0)
	rand.Seed(time.Now().UnixNano())

	args, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	bot := NewBot(args)

	if err := bot.run(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Bot shutdown cleanly.")
}
