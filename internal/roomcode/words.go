package roomcode

// Word pools. Codes pair words from two different pools.
var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"chick", "duckling", "fawn", "foal", "lamb", "calf", "raccoon", "skunk", "mole", "mouse",
	"ferret", "weasel", "beaver", "seahorse", "starfish", "dolphin", "whale", "narwhal", "penguin", "flamingo",
	"pelican", "swallow", "sparrow", "robin", "toucan", "parrot", "canary", "owl", "lynx", "yak",
}

var dishes = []string{
	"pancake", "waffle", "sushi", "ramen", "curry", "taco", "burrito", "biryani", "paella", "risotto",
	"lasagna", "pizza", "burger", "salad", "soup", "stew", "dumpling", "noodle", "omelette", "quiche",
	"kebab", "fondue", "pierogi", "gnocchi", "falafel", "samosa", "poutine", "dimsum", "bagel", "pretzel",
}

var sounds = []string{
	"echo", "chirp", "hum", "buzz", "purr", "whistle", "drum", "chime", "bell", "choir",
	"banjo", "cello", "flute", "harp", "kazoo", "lute", "oboe", "piano", "tuba", "violin",
	"ukulele", "bongo", "cymbal", "gong", "organ", "radio", "record", "tune", "melody", "rhythm",
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var extras = []string{
	"dragon", "unicorn", "griffin", "phoenix", "fairy", "gnome", "sprite", "pixie", "mermaid", "elf",
	"lantern", "puddle", "pebble", "cottage", "rocket", "comet", "orbit", "nebula", "canyon", "ridge",
	"sunbeam", "stardust", "pepper", "muffin", "bubble", "sprout", "ember", "maple", "cocoa", "breeze",
}

var pools = [][]string{animals, dishes, sounds, adjectives, extras}
