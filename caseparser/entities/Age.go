package entities

// Age is an inclusive age bracket in years.
type Age struct {
	Lower int
	Upper int
}
