package console

const MaxTurns = maxTurns
