package rendezvous

// wordLists feed room ids. Each id draws one word from four different lists.
var wordLists = [][]string{
	{ // animals
		"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
		"duckling", "fawn", "lamb", "raccoon", "beaver", "seahorse", "dolphin", "narwhal", "penguin", "toucan",
	},
	{ // dishes
		"pancake", "waffle", "sushi", "ramen", "curry", "taco", "biryani", "paella", "risotto", "lasagna",
		"dumpling", "noodle", "omelette", "kebab", "fondue", "pierogi", "gnocchi", "falafel", "samosa", "dimsum",
	},
	{ // names
		"alice", "bob", "charlie", "daisy", "ella", "finn", "grace", "henry", "isla", "jack",
		"kai", "luna", "mia", "noah", "olivia", "quinn", "rachel", "tina", "yara", "zoe",
	},
	{ // things
		"sunbeam", "stardust", "pepper", "muffin", "bubble", "sprout", "glimmer", "whisker", "echo", "jelly",
		"marble", "maple", "cocoa", "hazel", "breeze", "meadow", "willow", "ember", "pixel", "biscuit",
	},
	{ // adjectives
		"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
		"golden", "silver", "crimson", "emerald", "brave", "calm", "swift", "bouncy", "plucky", "merry",
	},
	{ // extras
		"dragon", "unicorn", "griffin", "phoenix", "gnome", "sprite", "pixie", "lantern", "puddle", "pebble",
		"rocket", "comet", "orbit", "nebula", "canyon", "ridge", "thimble", "button", "drizzle", "splash",
	},
}
