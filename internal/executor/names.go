package executor

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// adjectives and nouns back a short, memorable run name in the style of
// sprocket's generate_run_name (adjective-noun-suffix), re-implemented
// here since the original naming table was not retained in the source
// excerpt this module was built from.
var adjectives = []string{
	"brisk", "calm", "eager", "faint", "gentle", "hollow", "jolly", "keen",
	"lively", "mellow", "nimble", "proud", "quiet", "rapid", "steady", "vivid",
}

var nouns = []string{
	"yak", "falcon", "otter", "heron", "badger", "lynx", "marten", "osprey",
	"sparrow", "weasel", "wren", "ibex", "mole", "civet", "stoat", "grouse",
}

// GenerateRunName returns a human-readable adjective-noun-number name unique
// under outputDirectory/runs/, drawing a fresh random name on collision, up
// to 64 attempts.
func GenerateRunName(outputDirectory string) (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		name := fmt.Sprintf("%s-%s-%d", adjectives[rand.Intn(len(adjectives))], nouns[rand.Intn(len(nouns))], rand.Intn(10000))
		path := filepath.Join(outputDirectory, "runs", name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return name, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique run name after 64 attempts")
}
