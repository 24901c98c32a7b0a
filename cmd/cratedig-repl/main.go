// Admin REPL over a cratedig store: inspect posts, run searches, delete
// records and rebuild the keyword index from the global feed.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/config"
	"github.com/cratedig/cratedig/render"
	"github.com/cratedig/cratedig/search"
	"github.com/cratedig/cratedig/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("get"),
	readline.PcItem("feed"),
	readline.PcItem("timeline"),
	readline.PcItem("find"),
	readline.PcItem("del"),
	readline.PcItem("rebuild"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

const usage = `commands:
  get <pid>                  show one post
  feed [n]                   newest posts, global
  timeline <uid> [n]         newest posts of one owner
  find <keyword> [n]         keyword search
  del <uid> <created> <pid>  delete a post and its index entries
  rebuild                    rebuild the keyword index from the feed
  exit | quit
`

type repl struct {
	posts *cratedig.PostStore
	feed  *cratedig.FeedReader
	index *search.Index
}

func (r *repl) dump(post *cratedig.Post) {
	out, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(out))
}

func (r *repl) dumpAll(posts []*cratedig.Post, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	for _, post := range posts {
		fmt.Printf("%s\t%d\t%s — %s\n", post.ID, post.Created, post.Artist, post.Title)
	}
}

// rebuild walks the whole global feed and refreshes every post's entries,
// the recovery path for a lost or stale keyword index.
func (r *repl) rebuild() {
	posts, err := r.feed.GlobalFeed(-1)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	for _, post := range posts {
		if err := r.index.Refresh(post); err != nil {
			fmt.Fprintf(os.Stderr, "reindex %s: %v\n", post.ID, err)
		}
	}
	fmt.Printf("reindexed %d posts\n", len(posts))
}

func (r *repl) run(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "help":
		fmt.Print(usage)
	case "get":
		if len(args) != 2 {
			fmt.Print(usage)
			return
		}
		post, err := r.posts.Get(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		r.dump(post)
	case "feed":
		r.dumpAll(r.feed.GlobalFeed(optN(args, 1)))
	case "timeline":
		if len(args) < 2 {
			fmt.Print(usage)
			return
		}
		r.dumpAll(r.feed.OwnerTimeline(args[1], optN(args, 2)))
	case "find":
		if len(args) < 2 {
			fmt.Print(usage)
			return
		}
		r.dumpAll(r.index.Find(args[1], optN(args, 2)))
	case "del":
		if len(args) != 4 {
			fmt.Print(usage)
			return
		}
		created, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad created timestamp")
			return
		}
		if err := r.posts.Delete(args[1], created, args[3]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println("deleted")
	case "rebuild":
		r.rebuild()
	default:
		fmt.Print(usage)
	}
}

func main() {
	cfg := config.Get()
	log := utils.NewDefaultLogger(utils.ParseLevel(cfg.LogLevel))

	store, err := cratedig.OpenStore(cfg.DBPath, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	posts := cratedig.NewPostStore(store, log, cratedig.PostStoreOptions{
		Render: render.Notes,
	})
	r := &repl{
		posts: posts,
		feed:  cratedig.NewFeedReader(posts),
		index: search.NewIndex(store, log, posts),
	}
	posts.SetIndexer(r.index)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".cratedig_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()
	rl.CaptureExitSignal()

	for {
		line, err := rl.ReadLine()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return
		}
		r.run(line)
	}
}

func optN(args []string, i int) int {
	if len(args) <= i {
		return 0
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0
	}
	return n
}
