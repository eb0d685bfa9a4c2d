package mclog

// DeathMessage describes one kind of death message. Pattern is the part of the
// message following the victim's name, and may refer to another player
// with the (player) group.
type DeathMessage struct {
	ID      string
	Pattern string
}

const playerGroup = `([A-Za-z0-9_]{1,16})`

// DeathTable lists every known death message. Lines are matched against
// the entries in order and the first match wins, so more specific
// messages must come before the general ones they overlap with.
var DeathTable = []DeathMessage{
	{"anvil", `was squashed by a falling anvil`},
	{"cactus", `was pricked to death`},
	{"cactus-escape", `walked into a cactus whilst trying to escape (.+)`},
	{"arrow", `was shot by arrow`},
	{"drowned", `drowned`},
	{"drowned-escape", `drowned whilst trying to escape (.+)`},
	{"explosion", `blew up`},
	{"explosion-creeper", `was blown up by Creeper`},
	{"explosion-by", `was blown up by (.+)`},
	{"hitground", `hit the ground too hard`},
	{"high-void", `fell from a high place and fell out of the world`},
	{"high-finished-player", `fell from a high place and got finished off by ` + playerGroup},
	{"high", `fell from a high place`},
	{"high-ladder", `fell off a ladder`},
	{"high-vines", `fell off some vines`},
	{"high-water", `fell out of the water`},
	{"hitground-fire", `fell into a patch of fire`},
	{"hitground-cactus", `fell into a patch of cacti`},
	{"doomedtofall", `was doomed to fall`},
	{"doomedtofall-player-using", `was doomed to fall by ` + playerGroup + ` using \[(.+)\]`},
	{"doomedtofall-by", `was doomed to fall by (.+)`},
	{"arrow-high-vines", `was shot off some vines by (.+)`},
	{"arrow-high-ladder", `was shot off a ladder by (.+)`},
	{"explosion-high", `was blown from a high place by (.+)`},
	{"fire", `went up in flames`},
	{"burn", `burned to death`},
	{"burn-by", `was burnt to a crisp whilst fighting (.+)`},
	{"fire-by", `walked into a fire whilst fighting (.+)`},
	{"slain-player-using", `was slain by ` + playerGroup + ` using \[(.+)\]`},
	{"slain-using", `was slain by (.+) using \[(.+)\]`},
	{"slain-silverfish", `was slain by Silverfish`},
	{"slain-zombie", `was slain by Zombie`},
	{"slain", `was slain by (.+)`},
	{"shot-player-using", `was shot by ` + playerGroup + ` using \[(.+)\]`},
	{"shot-player", `was shot by ` + playerGroup},
	{"shot", `was shot by (.+)`},
	{"fireball", `was fireballed by (.+)`},
	{"lava-by", `tried to swim in lava to escape (.+)`},
	{"lava", `tried to swim in lava`},
	{"generic", `died`},
	{"finished-player-using", `got finished off by ` + playerGroup + ` using \[(.+)\]`},
	{"finished-using", `got finished off by (.+) using \[(.+)\]`},
	{"magic-player", `was killed by ` + playerGroup + ` using magic`},
	{"magic-by", `was killed by (.+) using magic`},
	{"magic", `was killed by magic`},
	{"starved", `starved to death`},
	{"wall", `suffocated in a wall`},
	{"generic-by", `was killed while trying to hurt (.+)`},
	{"pummeled-by", `was pummeled by (.+)`},
	{"void", `fell out of the world`},
	{"void-by", `was knocked into the void by (.+)`},
	{"wither", `withered away`},
}
