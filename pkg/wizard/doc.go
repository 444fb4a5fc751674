/*
Package wizard implements the questionnaire navigator.

A Navigator walks the root questions of one questionnaire. Each step shows
a root question followed by the conditional children its current answer
makes visible; "next" validates the step locally and then asks the
ResponseService for the following root question. Navigation results that
arrive after the user moved on are discarded.
*/
package wizard
